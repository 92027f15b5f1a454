package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stimd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Monitor.RefreshHz != 60 {
		t.Fatalf("refresh = %v", cfg.Monitor.RefreshHz)
	}
	if cfg.Trial.Duration != 5.0 || cfg.Trial.DurationUnit != "seconds" {
		t.Fatalf("trial = %+v", cfg.Trial)
	}
	if cfg.Timing.ImplausibleFPS != 210 || cfg.Timing.Tolerance != 0.10 || cfg.Timing.LongestFrameFactor != 2.0 {
		t.Fatalf("timing = %+v", cfg.Timing)
	}
	if cfg.Remote.TCPAddr != "localhost:7766" {
		t.Fatalf("tcp addr = %s", cfg.Remote.TCPAddr)
	}
	if cfg.MQTT.Topics.Control != "stim/control/stimd" {
		t.Fatalf("control topic = %s", cfg.MQTT.Topics.Control)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
instance_id: rig-2
db_path: /tmp/rig2.db
monitor:
  refresh_hz: 120
  lock_time_to_frames: true
trial:
  duration: 240
  duration_unit: frames
remote:
  grpc_addr: ":9000"
  command_rate: 20
mqtt:
  enabled: true
  broker: localhost:1883
  qos: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.RefreshHz != 120 || !cfg.Monitor.LockTimeToFrames {
		t.Fatalf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Trial.Duration != 240 || cfg.Trial.DurationUnit != "frames" {
		t.Fatalf("trial = %+v", cfg.Trial)
	}
	if cfg.Remote.TCPAddr != "" {
		t.Fatalf("tcp must stay disabled when grpc is set, got %q", cfg.Remote.TCPAddr)
	}
	if cfg.Remote.CommandBurst != 1 {
		t.Fatalf("burst = %d", cfg.Remote.CommandBurst)
	}
	if cfg.MQTT.Topics.Reports != "stim/trials/rig-2" {
		t.Fatalf("reports topic = %s", cfg.MQTT.Topics.Reports)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unit":     "trial:\n  duration_unit: minutes\n",
		"instance": "instance_id: Rig_2\n",
		"mqtt":     "mqtt:\n  enabled: true\n",
		"qos":      "mqtt:\n  qos: 3\n",
		"format":   "log:\n  format: xml\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestForeverKeepsZeroDuration(t *testing.T) {
	cfg := &Config{Trial: TrialConfig{DurationUnit: "forever"}}
	if err := Validate(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Trial.Duration != 0 {
		t.Fatalf("duration = %v", cfg.Trial.Duration)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STIM_DB":          "/var/lib/stim.db",
		"STIM_MQTT_BROKER": "broker:1883",
		"STIM_REFRESH_HZ":  "144",
	}
	cfg := Default()
	if err := ApplyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.DBPath != "/var/lib/stim.db" || !cfg.MQTT.Enabled || cfg.Monitor.RefreshHz != 144 {
		t.Fatalf("cfg = %+v", cfg)
	}

	env["STIM_REFRESH_HZ"] = "fast"
	if err := ApplyEnv(cfg, func(k string) string { return env[k] }); err == nil {
		t.Fatal("expected parse error")
	}
}
