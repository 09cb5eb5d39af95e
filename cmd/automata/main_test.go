package main

import (
	"testing"

	"github.com/zoeyai/automata/pkg/auto"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		input   string
		want    auto.Region
		wantErr bool
	}{
		{"0,0,800,600", auto.NewRegion(0, 0, 800, 600), false},
		{" 10, 20 ,30,40 ", auto.NewRegion(10, 20, 30, 40), false},
		{"-5,-5,10,10", auto.NewRegion(-5, -5, 10, 10), false},
		{"1,2,3", auto.Region{}, true},
		{"a,b,c,d", auto.Region{}, true},
		{"0,0,0,10", auto.Region{}, true},
	}

	for _, tt := range tests {
		got, err := parseRegion(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRegion(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRegion(%q) = %v, 期望 %v", tt.input, got, tt.want)
		}
	}
}

func TestCheckMode(t *testing.T) {
	for _, mode := range []string{modeExists, modeVanish, modeFindAll} {
		if err := checkMode(mode); err != nil {
			t.Errorf("%s 应为有效模式: %v", mode, err)
		}
	}
	if err := checkMode("click"); err == nil {
		t.Error("未知模式应返回错误")
	}
}
