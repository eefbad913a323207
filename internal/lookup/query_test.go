package lookup

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"  Node.JS ":         "nodejs",
		"C++":                "c++",
		"c#  / .NET":         "c# net",
		"Machine   Learning": "machine learning",
		"":                   "",
	}
	for in, want := range cases {
		if got := normalizeQuery(in); got != want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandQuery(t *testing.T) {
	if got := expandQuery("js"); !reflect.DeepEqual(got, []string{"js", "javascript"}) {
		t.Fatalf("unexpected variants %v", got)
	}
	if got := expandQuery("machinelearning"); !reflect.DeepEqual(got, []string{"machinelearning", "machine learning", "ml"}) {
		t.Fatalf("unexpected variants %v", got)
	}
	if got := expandQuery(""); got != nil {
		t.Fatalf("expected no variants, got %v", got)
	}
}

func TestStore_SearchSkillsByAlias(t *testing.T) {
	s := NewStore(&fakeSource{}, nil, creds, time.Minute, zerolog.Nop())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	got, err := s.SearchSkills("Go-Lang", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].CanonicalName != "Go" {
		t.Fatalf("expected Go, got %+v", got)
	}

	all, _ := s.SearchSkills("", 2)
	if len(all) != 2 {
		t.Fatalf("expected the limit to apply, got %d", len(all))
	}
}
