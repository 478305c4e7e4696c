package core

import (
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Storage.Driver != StorageDriverSQLite {
		t.Errorf("Expected default storage driver %s, got %s", StorageDriverSQLite, config.Storage.Driver)
	}

	if config.Generate.SavedTracksLimit != DefaultSavedTracksLimit {
		t.Errorf("Expected saved tracks limit %d, got %d", DefaultSavedTracksLimit, config.Generate.SavedTracksLimit)
	}

	if !config.Generate.IncludeTarget {
		t.Error("Expected the target playlist to be included by default")
	}

	if config.Generate.PlaylistItemLimit != 0 {
		t.Errorf("Expected unbounded playlist item limit by default, got %d", config.Generate.PlaylistItemLimit)
	}

	if config.Cover.Size != DefaultCoverSize || config.Cover.FontSize != DefaultCoverFontSize {
		t.Errorf("Unexpected cover defaults: %+v", config.Cover)
	}
}

func TestConfigConstants(t *testing.T) {
	if DefaultFetchConcurrency <= 0 {
		t.Error("DefaultFetchConcurrency should be positive")
	}

	if MaxItemsPerRequest != 100 {
		t.Errorf("MaxItemsPerRequest should match the Web API limit of 100, got %d", MaxItemsPerRequest)
	}
}

func TestGenerateConfig_Request(t *testing.T) {
	cfg := GenerateConfig{
		SourcePlaylistIDs: []string{"P1", "P2"},
		SavedTracksLimit:  20,
		PlaylistItemLimit: 100,
		IncludeTarget:     true,
	}

	req := cfg.Request("target")
	want := AggregationRequest{
		TargetPlaylistID:  "target",
		SavedTracksLimit:  20,
		PlaylistItemLimit: 100,
		IncludeTarget:     true,
	}
	if !reflect.DeepEqual(req, want) {
		t.Errorf("Request() = %+v, want %+v", req, want)
	}
	if req.SourcePlaylistIDs != nil {
		t.Errorf("Expected sources to be left unset, got %v", req.SourcePlaylistIDs)
	}
}
