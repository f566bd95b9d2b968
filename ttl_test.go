package chronos

import "testing"

func TestVolatilityEstimatorDefaultsUnknownKey(t *testing.T) {
	v := newVolatilityEstimator(10)
	if got := v.estimate("never-seen"); got != 0.5 {
		t.Errorf("estimate on unknown key = %v, want 0.5", got)
	}
}

func TestVolatilityEstimatorSingleSampleStaysDefault(t *testing.T) {
	v := newVolatilityEstimator(10)
	v.recordChange("k", 1_000_000_000)
	if got := v.estimate("k"); got != 0.5 {
		t.Errorf("estimate with one sample = %v, want 0.5", got)
	}
}

func TestVolatilityEstimatorComputesFromHistory(t *testing.T) {
	v := newVolatilityEstimator(10)
	// three changes, 1000ms apart each -> mean inter-arrival 1000ms.
	v.recordChange("k", 0)
	v.recordChange("k", int64(1e9))
	v.recordChange("k", int64(2e9))
	got := v.estimate("k")
	want := 3_600_000.0 / 1000.0
	if got != want {
		t.Errorf("estimate = %v, want %v", got, want)
	}
}

func TestVolatilityEstimatorBoundsHistory(t *testing.T) {
	v := newVolatilityEstimator(2)
	v.recordChange("k", 0)
	v.recordChange("k", int64(1e9))
	v.recordChange("k", int64(2e9)) // should evict the first timestamp (0)
	if got := len(v.history["k"]); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
	if v.history["k"][0] != int64(1e9) {
		t.Errorf("oldest retained timestamp = %d, want %d", v.history["k"][0], int64(1e9))
	}
}

func TestVolatilityEstimatorForget(t *testing.T) {
	v := newVolatilityEstimator(10)
	v.recordChange("k", 0)
	v.forget("k")
	if _, ok := v.history["k"]; ok {
		t.Error("expected history to be dropped after forget")
	}
}

func TestTTLControllerObserveChangeNoOpWhenDisabled(t *testing.T) {
	c := NewTTLController(nil, TTLConfig{Enabled: false}, newFakeTimeProvider(0))
	c.ObserveChange("k")
	if len(c.vol.history) != 0 {
		t.Error("a disabled controller must not record volatility history")
	}
}

func TestTTLControllerObserveChangeRecordsWhenEnabled(t *testing.T) {
	c := NewTTLController(nil, TTLConfig{Enabled: true, History: 10}, newFakeTimeProvider(1_000_000_000))
	c.ObserveChange("k")
	if len(c.vol.history["k"]) != 1 {
		t.Errorf("history[k] length = %d, want 1", len(c.vol.history["k"]))
	}
}

func TestMaybeRewriteSkipsNeverExpiringKeys(t *testing.T) {
	st := newTestStore(t, Config{Segments: 1, MaxMemoryBytes: 1 << 20, ExpirySweepInterval: -1})
	st.Set("k", []byte("v"), 0, 0) // never expires
	c := NewTTLController(st, TTLConfig{
		Enabled: true, History: 10, Deadband: 0.2, BaseSeconds: 3600,
		MinMultiplier: 0.1, MaxMultiplier: 10,
	}, newFakeTimeProvider(0))

	c.maybeRewrite("k", 100, 1024, 5, -1)
	secs, ok := st.TTL("k")
	if !ok || secs != -1 {
		t.Errorf("TTL after maybeRewrite on a never-expiring key = (%d, %v), want (-1, true)", secs, ok)
	}
}

func TestMaybeRewriteAppliesOutsideDeadband(t *testing.T) {
	st := newTestStore(t, Config{Segments: 1, MaxMemoryBytes: 1 << 20, ExpirySweepInterval: -1})
	st.Set("k", []byte("v"), 3600, 0)
	c := NewTTLController(st, TTLConfig{
		Enabled: true, History: 10, Deadband: 0.2, BaseSeconds: 3600,
		MinMultiplier: 0.1, MaxMultiplier: 10,
	}, newFakeTimeProvider(0))

	// High accesses-per-hour and high compute cost push the multiplier
	// toward MaxMultiplier, which is well outside a 20% deadband of 3600s.
	c.maybeRewrite("k", 10_000, 64, 1000, 3600)

	secs, ok := st.TTL("k")
	if !ok {
		t.Fatal("expected key to still be present")
	}
	if secs == 3600 {
		t.Error("expected the TTL to be rewritten when outside the deadband")
	}
}

func TestMaybeRewriteSkipsWithinDeadband(t *testing.T) {
	st := newTestStore(t, Config{Segments: 1, MaxMemoryBytes: 1 << 20, ExpirySweepInterval: -1})
	st.Set("k", []byte("v"), 3600, 0)
	c := NewTTLController(st, TTLConfig{
		Enabled: true, History: 10, Deadband: 0.99, BaseSeconds: 3600,
		MinMultiplier: 0.1, MaxMultiplier: 10,
	}, newFakeTimeProvider(0))

	// With a near-1.0 deadband fraction, almost any multiplier should be
	// suppressed, leaving the TTL untouched.
	c.maybeRewrite("k", 1, 1024, 1, 3600)

	secs, ok := st.TTL("k")
	if !ok || secs != 3600 {
		t.Errorf("TTL = (%d, %v), want (3600, true) — rewrite should have been suppressed", secs, ok)
	}
}

func TestAbsInt64(t *testing.T) {
	if absInt64(-5) != 5 {
		t.Error("absInt64(-5) != 5")
	}
	if absInt64(5) != 5 {
		t.Error("absInt64(5) != 5")
	}
}

func TestMaxFloat(t *testing.T) {
	if maxFloat(1, 2) != 2 {
		t.Error("maxFloat(1, 2) != 2")
	}
	if maxFloat(2, 1) != 2 {
		t.Error("maxFloat(2, 1) != 2")
	}
}
