package cache

import (
	"testing"
	"time"
)

func TestImageKey(t *testing.T) {
	base := "img:std:10_114550452_115067678:800x450:g3"

	t.Run("noParams", func(t *testing.T) {
		got := ImageKey("std", "10", 114550452, 115067678, 800, 450, 3, nil)
		if got != base {
			t.Fatalf("expected %q, got %q", base, got)
		}
	})

	t.Run("paramsChangeTheKey", func(t *testing.T) {
		got := ImageKey("std", "10", 114550452, 115067678, 800, 450, 3,
			map[string]string{"analysis": "45"})
		if got == base {
			t.Fatal("expected params to alter the key")
		}
	})

	t.Run("stableAcrossParamOrder", func(t *testing.T) {
		a := ImageKey("std", "10", 1, 2, 800, 450, 0,
			map[string]string{"a": "1", "b": "2"})
		b := ImageKey("std", "10", 1, 2, 800, 450, 0,
			map[string]string{"b": "2", "a": "1"})
		if a != b {
			t.Fatalf("expected stable key, got %q vs %q", a, b)
		}
	})

	t.Run("generationInvalidates", func(t *testing.T) {
		a := ImageKey("std", "10", 1, 2, 800, 450, 1, nil)
		b := ImageKey("std", "10", 1, 2, 800, 450, 2, nil)
		if a == b {
			t.Fatal("expected generation bump to change the key")
		}
	})
}

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		ImageCacheSizeMB: 8,
		ImageTTL:         time.Minute,
		DataCacheSize:    16,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer m.Close()

	if _, ok := m.GetImage("missing"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	img := []byte{0x89, 'P', 'N', 'G'}
	if err := m.SetImage("k1", img); err != nil {
		t.Fatalf("set image failed: %v", err)
	}
	got, ok := m.GetImage("k1")
	if !ok || string(got) != string(img) {
		t.Fatalf("image round trip failed: ok=%v got=%v", ok, got)
	}

	m.SetData("d1", []byte(`{"rows":[]}`))
	if data, ok := m.GetData("d1"); !ok || string(data) != `{"rows":[]}` {
		t.Fatalf("data round trip failed: ok=%v got=%s", ok, data)
	}

	stats := m.Stats()
	if stats["image_cache_len"].(int) != 1 {
		t.Errorf("expected 1 cached image, got %v", stats["image_cache_len"])
	}
}
