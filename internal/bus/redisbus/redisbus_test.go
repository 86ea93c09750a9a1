package redisbus

import (
	"errors"
	"testing"
)

func TestIsBusyGroupErr(t *testing.T) {
	if !isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Fatalf("expected BUSYGROUP error to be recognized")
	}
	if isBusyGroupErr(errors.New("some other error")) {
		t.Fatalf("did not expect unrelated error to be recognized as BUSYGROUP")
	}
	if isBusyGroupErr(nil) {
		t.Fatalf("nil error must not be treated as BUSYGROUP")
	}
}
