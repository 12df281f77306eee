package checker

import (
	"reflect"
	"testing"

	"packls/internal/config"
)

func testChecker(executable string) *Checker {
	cfg := &config.Config{Executable: executable}
	return New(NewRunner(nil, 0), func() *config.Config { return cfg }, "/ws")
}

func TestCheckInvocationShapes(t *testing.T) {
	chk := testChecker("bin/packwerk check")

	tests := []struct {
		name string
		opts CheckOptions
		want []string
	}{
		{
			name: "workspace",
			opts: CheckOptions{},
			want: []string{"bin/packwerk", "check", "--json"},
		},
		{
			name: "single file",
			opts: CheckOptions{File: "packs/a/app/x.rb"},
			want: []string{"bin/packwerk", "check", "--json", "packs/a/app/x.rb"},
		},
		{
			name: "ignore recorded",
			opts: CheckOptions{IgnoreRecorded: true, File: "packs/a/app/x.rb"},
			want: []string{"bin/packwerk", "check", "--json", "--ignore-recorded-violations", "packs/a/app/x.rb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := chk.CheckInvocation(tt.opts)
			if !reflect.DeepEqual(inv.Args, tt.want) {
				t.Errorf("args = %v, want %v", inv.Args, tt.want)
			}
			if inv.Dir != "/ws" {
				t.Errorf("dir = %q, want /ws", inv.Dir)
			}
		})
	}
}

func TestCheckInvocationCarriesBuffer(t *testing.T) {
	chk := testChecker("bin/packwerk check")
	inv := chk.CheckInvocation(CheckOptions{
		File:   "packs/a/app/x.rb",
		Buffer: []byte("class X; end"),
	})
	if string(inv.Stdin) != "class X; end" {
		t.Errorf("stdin = %q", inv.Stdin)
	}
}

func TestWrappedExecutableKeepsWrapper(t *testing.T) {
	chk := testChecker("bundle exec packwerk check")
	inv := chk.CheckInvocation(CheckOptions{})
	want := []string{"bundle", "exec", "packwerk", "check", "--json"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}
