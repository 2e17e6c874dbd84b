package bundle

import (
	"path"
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// Member routing. Exact basenames are checked before the pattern list so
// a file merely containing "ds_agent.log" in its name cannot steal the
// agent route; the generic .log pattern is deliberately last.
var exactRoutes = map[string]common.LogType{
	"ds_agent.log":        common.LogTypeAgent,
	"ds_agent-err.log":    common.LogTypeAgent,
	"topnbusyprocess.txt": common.LogTypeProcess,
}

type patternRoute struct {
	re      *regexp.Regexp
	logType common.LogType
}

var patternRoutes = []patternRoute{
	{regexp.MustCompile(`(?i)^AMSP-Inst.*\.log$`), common.LogTypeAMSP},
	{regexp.MustCompile(`(?i)^amsp.*\.log$`), common.LogTypeAMSP},
	{regexp.MustCompile(`(?i)^RunningProcesses.*\.xml$`), common.LogTypeProcess},
	{regexp.MustCompile(`(?i)\.log$`), common.LogTypeGeneric},
}

// Classify routes one archive member name to a log type. Routing looks at
// the basename only, case-insensitively; a trailing .gz is stripped first
// so compressed members route like their decompressed content.
func Classify(name string) (common.LogType, bool) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, `\`, "/")))
	base = strings.TrimSuffix(base, ".gz")

	if logType, ok := exactRoutes[base]; ok {
		return logType, true
	}
	for _, route := range patternRoutes {
		if route.re.MatchString(base) {
			return route.logType, true
		}
	}
	return "", false
}
