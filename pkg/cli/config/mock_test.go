package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
)

func TestMock_RelayURL(t *testing.T) {
	gt.Value(t, (&config.Mock{}).RelayURL(8080)).Equal("http://localhost:8080")
	gt.Value(t, (&config.Mock{WebhookURL: "http://watcher:9000"}).RelayURL(8080)).Equal("http://watcher:9000")
}
