package stats

import "github.com/lni/dragonboat/v4/logger"

var Logger = logger.GetLogger("stats")
