package enforce

import (
	"errors"
	"testing"
)

func TestEnforceTruePasses(t *testing.T) {
	ENFORCE(true, "should not panic")
	ENFORCE(nil, "non-bool non-error passes")

	var err error
	ENFORCE(err, "nil error passes")
}

func TestEnforceFalsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ENFORCE(false) did not panic")
		}
	}()
	ENFORCE(false, "boom")
}

func TestEnforceErrorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ENFORCE(error) did not panic")
		}
	}()
	ENFORCE(errors.New("boom"), "boom")
}
