package beaver

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeClassic, false},
		{"mild", ModeMild, false},
		{"Classic", ModeClassic, false},
		{" MAXIMUM ", ModeMaximum, false},
		{"feral", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseMode(%q) err = %v, want ErrUnknownMode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubstitute_LongestKeyWins(t *testing.T) {
	b := New(1)
	got := b.Substitute("the woman and the man", ModeClassic)
	want := "the beaver biologist and the beaver enthusiast"
	if got != want {
		t.Errorf("Substitute = %q, want %q", got, want)
	}
}

func TestNewReplacer_LongestPrefixKeyWins(t *testing.T) {
	tests := []struct {
		name     string
		keywords map[string]string
		in, want string
	}{
		{
			name:     "man_mankind",
			keywords: map[string]string{"man": "x-man", "mankind": "all beavers"},
			in:       "mankind and man",
			want:     "all beavers and x-man",
		},
		{
			name:     "man_mankind_capitalized",
			keywords: map[string]string{"man": "x-man", "mankind": "all beavers"},
			in:       "Mankind and Man",
			want:     "All beavers and X-man",
		},
		{
			name:     "tree_treehouse",
			keywords: map[string]string{"tree": "snack", "treehouse": "lodge"},
			in:       "a treehouse in a tree",
			want:     "a lodge in a snack",
		},
		{
			name:     "tree_treehouse_capitalized",
			keywords: map[string]string{"tree": "snack", "treehouse": "lodge"},
			in:       "Treehouse by the Tree",
			want:     "Lodge by the Snack",
		},
		{
			name:     "three_nested",
			keywords: map[string]string{"a": "1", "ab": "2", "abc": "3"},
			in:       "abc ab a",
			want:     "3 2 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newReplacer(tt.keywords).Replace(tt.in); got != tt.want {
				t.Errorf("Replace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubstitute_NoRescan(t *testing.T) {
	b := New(1)
	// "respect for beaver society" must not be scanned again for keywords.
	got := b.Substitute("love", ModeMaximum)
	if got != "respect for beaver society" {
		t.Errorf("Substitute = %q", got)
	}
}

func TestSubstitute_Capitalized(t *testing.T) {
	b := New(1)
	got := b.Substitute("River of love", ModeClassic)
	want := "Beaver highway of respect for beaver society"
	if got != want {
		t.Errorf("Substitute = %q, want %q", got, want)
	}
}

func TestSubstitute_ModesDiffer(t *testing.T) {
	b := New(1)
	in := "we fight for home"
	if got := b.Substitute(in, ModeMild); got != in {
		t.Errorf("mild = %q, want unchanged", got)
	}
	if got := b.Substitute(in, ModeClassic); got != "we dam dispute for home" {
		t.Errorf("classic = %q", got)
	}
	if got := b.Substitute(in, ModeMaximum); got != "we dam dispute for lodge" {
		t.Errorf("maximum = %q", got)
	}
}

func TestBeaverify_Deterministic(t *testing.T) {
	in := "I love this city and its river"
	for _, mode := range Modes {
		a := New(42)
		b := New(42)
		for i := 0; i < 5; i++ {
			x, y := a.Beaverify(in, mode), b.Beaverify(in, mode)
			if x != y {
				t.Fatalf("mode %s call %d: outputs differ:\n%q\n%q", mode, i, x, y)
			}
		}
	}
}

func TestBeaverify_Layout(t *testing.T) {
	tests := []struct {
		mode   Mode
		idioms int
	}{
		{ModeMild, 1},
		{ModeClassic, 2},
		{ModeMaximum, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out := New(7).Beaverify("tree", tt.mode)
			if !strings.HasPrefix(out, "snack supply\n\n") {
				t.Errorf("output should start with substituted text, got %q", out)
			}
			parts := strings.Split(out, "\n\n")
			if len(parts) != 3 {
				t.Fatalf("want 3 blocks (text, idioms, fact), got %d: %q", len(parts), out)
			}
			lines := strings.Split(parts[1], "\n")
			if len(lines) != tt.idioms {
				t.Errorf("idiom lines = %d, want %d", len(lines), tt.idioms)
			}
			seen := map[string]bool{}
			for _, l := range lines {
				if seen[l] {
					t.Errorf("duplicate idiom %q", l)
				}
				seen[l] = true
			}
			if !strings.HasPrefix(parts[2], "Bonus Beaver Fact: ") {
				t.Errorf("last block = %q, want fact line", parts[2])
			}
		})
	}
}

func TestBeaverify_Concurrent(t *testing.T) {
	b := New(3)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if out := b.Beaverify("family", ModeClassic); !strings.Contains(out, "beaver colony") {
				t.Errorf("unexpected output %q", out)
			}
		}()
	}
	wg.Wait()
}

func TestKeywords_ReturnsCopy(t *testing.T) {
	k := Keywords(ModeClassic)
	k["love"] = "hate"
	if Keywords(ModeClassic)["love"] != "respect for beaver society" {
		t.Error("Keywords leaked internal map")
	}
	if len(Keywords(ModeMaximum)) != len(classicKeywords)+len(maximumExtras) {
		t.Error("maximum should be classic plus extras")
	}
}
