package cmn

import "testing"

func TestDefaultConfigValid(t *testing.T) {
	c := defaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if c.ReapRemoveAfter() != 2*c.ReapInterval {
		t.Fatalf("ReapRemoveAfter should be 2x ReapInterval")
	}
}

func TestConfigValidateRejectsBadDurations(t *testing.T) {
	c := defaultConfig()
	c.CleanupTimeoutStr = "not-a-duration"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for invalid cleanup_timeout")
	}
}

func TestConfigValidateRejectsZeroReapInterval(t *testing.T) {
	c := defaultConfig()
	c.ReapIntervalStr = "0s"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for zero reap_interval")
	}
}

func TestConfigValidateRejectsEmptyLinkName(t *testing.T) {
	c := defaultConfig()
	c.DefaultLinkName = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for empty default_link_name")
	}
}

func TestGCOBeginCommitUpdate(t *testing.T) {
	orig := GCO.Get()
	defer GCO.Put(orig)

	cfg := GCO.BeginUpdate()
	cfg.Multitenant = true
	GCO.CommitUpdate(cfg)

	if !GCO.Get().Multitenant {
		t.Fatalf("expected committed update to be visible")
	}
}
