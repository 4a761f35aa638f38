package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Backup || c.TitleCharset != "latin1" || c.Device != "" {
		t.Errorf("got %+v, wanted defaults", c)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "device: 054c:0081\nonthefly: lp2\nbackup: false\nverbose: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.OnTheFly != "lp2" || c.Backup || !c.Verbose || c.TitleCharset != "latin1" {
		t.Errorf("got %+v", c)
	}
	vid, pid, err := c.DeviceFilter()
	if err != nil {
		t.Fatalf("DeviceFilter: %v", err)
	}
	if vid != 0x054c || pid != 0x0081 {
		t.Errorf("got %s:%s", vid, pid)
	}
}

func TestLoadBadDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	for _, dev := range []string{"054c", "zz:0081", "054c:12345"} {
		if err := os.WriteFile(path, []byte("device: \""+dev+"\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("device %q accepted", dev)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	c := Default()
	c.OnTheFly = "lp4"
	c.TitleCharset = "cp1252"
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *c {
		t.Errorf("got %+v, wanted %+v", got, c)
	}
}
