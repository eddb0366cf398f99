package exclusion

import (
	"testing"

	"github.com/publisherkit/pagecache/pkg/config"
)

func TestNewEngine_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewEngine should panic with nil provider")
		}
	}()
	NewEngine(nil)
}

func TestEngine_ExcludesKey(t *testing.T) {
	p := config.MapProvider{
		config.KeyExcludeKeys: "session:*\npage:checkout",
	}
	e := NewEngine(p)

	if !e.ExcludesKey("session:abc") {
		t.Error("session:abc should be excluded")
	}
	if !e.ExcludesKey("page:checkout") {
		t.Error("page:checkout should be excluded")
	}
	if e.ExcludesKey("page:home") {
		t.Error("page:home should not be excluded")
	}
}

func TestEngine_ExcludesEphemeral(t *testing.T) {
	p := config.MapProvider{
		config.KeyExcludeEphemeral: "feed_*",
	}
	e := NewEngine(p)

	if !e.ExcludesEphemeral("feed_latest") {
		t.Error("feed_latest should be excluded")
	}
	if e.ExcludesEphemeral("nav_menu") {
		t.Error("nav_menu should not be excluded")
	}
}

func TestEngine_ExcludesContent(t *testing.T) {
	p := config.MapProvider{
		config.KeyExcludeContent: "data-nocache",
	}
	e := NewEngine(p)

	if !e.ExcludesContent(`<body data-nocache>x</body>`) {
		t.Error("body containing data-nocache should be excluded")
	}
	if e.ExcludesContent("<body>x</body>") {
		t.Error("plain body should not be excluded")
	}
}

func TestEngine_ExcludesFragmentType(t *testing.T) {
	p := config.MapProvider{
		config.KeyExcludeFragmentTypes: "poll\nlive-*",
	}
	e := NewEngine(p)

	if !e.ExcludesFragmentType("poll") {
		t.Error("poll should be excluded")
	}
	if !e.ExcludesFragmentType("live-scores") {
		t.Error("live-scores should be excluded")
	}
	if e.ExcludesFragmentType("gallery") {
		t.Error("gallery should not be excluded")
	}
}

// Rules are compiled from the provider on every evaluation, so a settings
// change is observed by the very next call.
func TestEngine_ReadsFreshRules(t *testing.T) {
	p := config.MapProvider{}
	e := NewEngine(p)

	if e.ExcludesKey("session:abc") {
		t.Fatal("nothing excluded before rules are set")
	}

	p[config.KeyExcludeKeys] = "session:*"

	if !e.ExcludesKey("session:abc") {
		t.Error("new rule should apply immediately")
	}
}
