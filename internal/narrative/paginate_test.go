package narrative

import (
	"reflect"
	"strings"
	"testing"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"fits", "a\nb", 10, []string{"a\nb"}},
		{"line boundaries", "aaaa\nbbbb\ncccc", 9, []string{"aaaa\nbbbb", "cccc"}},
		{"exact fit", "aaaa\nbbbb", 9, []string{"aaaa\nbbbb"}},
		{"long line", "abcdefgh\nxy", 3, []string{"abc", "def", "gh", "xy"}},
		{"runes", "ééé\nééé", 5, []string{"ééé", "ééé"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Paginate(tt.text, tt.max); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Paginate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaginateKeepsAllContent(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("x", i%37+1))
	}
	text := strings.Join(lines, "\n")
	blocks := Paginate(text, DefaultMaxBlockLength)
	if strings.Join(blocks, "\n") != text {
		t.Fatal("joined blocks differ from the input")
	}
	for _, b := range blocks {
		if len(b) > DefaultMaxBlockLength {
			t.Errorf("block of %d bytes", len(b))
		}
	}
}
