package config

import (
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()
	c.SetDataDir("/tmp/sg")
	if c.DatabaseDir != filepath.Join("/tmp/sg", DefaultBadgerFile) {
		t.Fatalf("bad database dir %s", c.DatabaseDir)
	}

	c = NewDefaultConfig()
	c.DatabaseDir = "/elsewhere"
	c.SetDataDir("/tmp/sg")
	if c.DatabaseDir != "/elsewhere" {
		t.Fatalf("explicit database dir should be kept, got %s", c.DatabaseDir)
	}
}

func TestDerivedIDs(t *testing.T) {
	c := NewDefaultConfig()
	c.MaxLevels = 8

	num := c.NodeNumID()
	if num == 0 || num != c.NodeNumID() {
		t.Fatalf("derived numeric id should be stable and non zero, got %d", num)
	}

	name := c.NodeNameID()
	if err := skipgraph.ValidateNameID(name, c.MaxLevels); err != nil {
		t.Fatal(err)
	}
	if len(name) != 8 {
		t.Fatalf("expected 8 bits, got %q", name)
	}

	c.NumID = 7
	c.NameID = "0110"
	if c.NodeNumID() != 7 || c.NodeNameID() != "0110" {
		t.Fatalf("explicit ids should win: %d %s", c.NodeNumID(), c.NodeNameID())
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"panic":   logrus.PanicLevel,
		"unknown": logrus.DebugLevel,
	}
	for in, want := range cases {
		if got := LogLevel(in); got != want {
			t.Fatalf("LogLevel(%s) = %v, want %v", in, got, want)
		}
	}

	c := NewDefaultConfig()
	c.LogLevel = "warn"
	if c.Logger().Logger.Level != logrus.WarnLevel {
		t.Fatalf("logger should use the configured level")
	}
	if c.Logger().Data["prefix"] != "skipgraph" {
		t.Fatalf("missing prefix field")
	}
}
