package peerbus

import (
	"errors"
	"testing"
)

func TestSelectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selector
		wantErr error
	}{
		{"glob", Selector{Target: "web-*", MatchType: MatchGlob}, nil},
		{"grain", Selector{Target: "role:auth-server", MatchType: MatchGrain}, nil},
		{"list", Selector{Target: "web-01,web-02", MatchType: MatchList}, nil},
		{"empty target", Selector{Target: "", MatchType: MatchGlob}, ErrEmptyTarget},
		{"grain without colon", Selector{Target: "auth-server", MatchType: MatchGrain}, ErrInvalidGrainTarget},
		{"grain empty key", Selector{Target: ":auth-server", MatchType: MatchGrain}, ErrInvalidGrainTarget},
		{"grain empty value", Selector{Target: "role:", MatchType: MatchGrain}, ErrInvalidGrainTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectorMatches(t *testing.T) {
	grains := map[string]string{"role": "auth-server", "env": "prod"}

	tests := []struct {
		name   string
		sel    Selector
		nodeID string
		want   bool
	}{
		{"glob exact", Selector{Target: "web-01", MatchType: MatchGlob}, "web-01", true},
		{"glob wildcard", Selector{Target: "web-*", MatchType: MatchGlob}, "web-01", true},
		{"glob all", Selector{Target: "*", MatchType: MatchGlob}, "anything", true},
		{"glob miss", Selector{Target: "web-*", MatchType: MatchGlob}, "db-01", false},
		{"glob question mark", Selector{Target: "web-0?", MatchType: MatchGlob}, "web-01", true},
		{"grain hit", Selector{Target: "role:auth-server", MatchType: MatchGrain}, "any", true},
		{"grain value miss", Selector{Target: "role:web", MatchType: MatchGrain}, "any", false},
		{"grain key miss", Selector{Target: "tier:auth-server", MatchType: MatchGrain}, "any", false},
		{"list hit", Selector{Target: "web-01,web-02", MatchType: MatchList}, "web-02", true},
		{"list hit with spaces", Selector{Target: "web-01, web-02", MatchType: MatchList}, "web-02", true},
		{"list miss", Selector{Target: "web-01,web-02", MatchType: MatchList}, "web-03", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Matches(tt.nodeID, grains); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.nodeID, got, tt.want)
			}
		})
	}
}

func TestSelectorMatchesNilGrains(t *testing.T) {
	sel := Selector{Target: "role:auth-server", MatchType: MatchGrain}
	if sel.Matches("auth-01", nil) {
		t.Error("a grain selector must not match a peer with no grains")
	}
}

func TestParseMatchType(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchType
		wantErr bool
	}{
		{"glob", MatchGlob, false},
		{"grain", MatchGrain, false},
		{"list", MatchList, false},
		{"pcre", MatchGlob, true},
		{"", MatchGlob, true},
	}

	for _, tt := range tests {
		got, err := ParseMatchType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMatchType(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMatchType(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMatchType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatchTypeString(t *testing.T) {
	if MatchGlob.String() != "glob" || MatchGrain.String() != "grain" || MatchList.String() != "list" {
		t.Error("MatchType String() names should round-trip with ParseMatchType")
	}
}
