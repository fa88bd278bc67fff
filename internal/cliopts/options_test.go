package cliopts

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestBindParsesFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var opts Options
	Bind(flags, &opts)

	args := []string{
		"-a", "-z", "--bwlimit=1024", "--port=2873",
		"--exclude=*.tmp", "--filter=- .git/",
	}
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}

	if !opts.Archive || !opts.Compress {
		t.Fatal("expected archive and compress to be set")
	}
	if opts.BandwidthLimit != 1024 {
		t.Fatalf("got bwlimit %d, want 1024", opts.BandwidthLimit)
	}
	if opts.Port != 2873 {
		t.Fatalf("got port %d, want 2873", opts.Port)
	}
	if len(opts.FilterRules) != 2 {
		t.Fatalf("got %d filter rules, want 2: %v", len(opts.FilterRules), opts.FilterRules)
	}
}

func TestApplyArchiveExpandsFlags(t *testing.T) {
	opts := Options{Archive: true}
	opts.ApplyArchive()

	if !opts.Recursive || !opts.PreserveLinks || !opts.PreservePerms ||
		!opts.PreserveTimes || !opts.PreserveOwner || !opts.PreserveGroup {
		t.Fatal("expected archive to expand into all constituent preserve flags")
	}
}

func TestApplyArchiveNoopWhenUnset(t *testing.T) {
	opts := Options{}
	opts.ApplyArchive()
	if opts.Recursive {
		t.Fatal("expected no expansion when archive is not set")
	}
}
