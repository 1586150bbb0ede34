package logger

import "testing"

func TestUserSamplerIsStablePerUser(t *testing.T) {
	s := newUserSampler(1, 4)
	kept := 0
	for id := int64(1); id <= 400; id++ {
		first := s.Allow(id)
		for i := 0; i < 3; i++ {
			if s.Allow(id) != first {
				t.Fatalf("user %d sampled inconsistently", id)
			}
		}
		if first {
			kept++
		}
	}
	if kept == 0 || kept == 400 {
		t.Fatalf("kept %d of 400 users", kept)
	}
	if !s.Allow(0) {
		t.Fatal("updates without a sender must pass")
	}
}

func TestUserSamplerDisabled(t *testing.T) {
	s := newUserSampler(0, 0)
	for id := int64(1); id <= 50; id++ {
		if !s.Allow(id) {
			t.Fatalf("user %d dropped with sampling off", id)
		}
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/10": {1, 10},
		"25":   {1, 25},
		"0":    {0, 0},
		"x/2":  {0, 0},
		"":     {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", spec, num, den, want[0], want[1])
		}
	}
}
