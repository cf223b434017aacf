package config

import "github.com/breeze-rmm/remote-desktop/internal/logging"

var log = logging.L("config")
