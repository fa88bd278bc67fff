package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func TestExchangeCompatFlagsIntersects(t *testing.T) {
	var a, b bytes.Buffer
	wA := bufio.NewWriter(&a)
	rA := bufio.NewReader(&b)
	wB := bufio.NewWriter(&b)
	rB := bufio.NewReader(&a)

	localA := CompatibilityFlags(CompatIncRecurse | CompatSafeFlist | CompatSymlinkTimes)
	localB := CompatibilityFlags(CompatIncRecurse | CompatSymlinkTimes | CompatFixChecksumSeed)

	result := make(chan CompatibilityFlags, 1)
	go func() {
		flags, _ := ExchangeCompatFlags(rB, wB, VersionVarint, localB)
		result <- flags
	}()

	flagsA, err := ExchangeCompatFlags(rA, wA, VersionVarint, localA)
	if err != nil {
		t.Fatal(err)
	}
	flagsB := <-result

	want := localA & localB
	if flagsA != want || flagsB != want {
		t.Fatalf("expected both sides to resolve intersection %#x, got a=%#x b=%#x", want, flagsA, flagsB)
	}
}

func TestExchangeCompatFlagsLegacySingleByte(t *testing.T) {
	var a, b bytes.Buffer
	wA := bufio.NewWriter(&a)
	rA := bufio.NewReader(&b)
	wB := bufio.NewWriter(&b)
	rB := bufio.NewReader(&a)

	result := make(chan CompatibilityFlags, 1)
	go func() {
		flags, _ := ExchangeCompatFlags(rB, wB, 28, CompatibilityFlags(CompatIncRecurse))
		result <- flags
	}()

	flagsA, err := ExchangeCompatFlags(rA, wA, 28, CompatibilityFlags(CompatIncRecurse|CompatSafeFlist))
	if err != nil {
		t.Fatal(err)
	}
	if flagsA != CompatibilityFlags(CompatIncRecurse) {
		t.Fatalf("expected intersection to drop SafeFlist, got %#x", flagsA)
	}
	<-result
}
