package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitCommands(t *testing.T) {
	tests := []struct {
		args []string
		want [][]string
	}{
		{[]string{"status"}, [][]string{{"status"}}},
		{[]string{"open", ";", "key", "3", ";", "tick"}, [][]string{{"open"}, {"key", "3"}, {"tick"}}},
		{[]string{"open;", "key", "3;", "tick", "2"}, [][]string{{"open"}, {"key", "3"}, {"tick", "2"}}},
		{[]string{";", ";"}, nil},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitCommands(tt.args)); diff != "" {
			t.Errorf("splitCommands(%q) mismatch (-want +got):\n%s", tt.args, diff)
		}
	}
}
