package types

// Version is overwritten at build time with -ldflags
var Version = "dev"

// AppName is used as the service name in logs and error reports
const AppName = "git-watcher"
