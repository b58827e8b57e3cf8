package music

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// 只识别行首的第一个时间标签，一行多个标签时后面的标签按普通文本处理
var lrcTagPattern = regexp.MustCompile(`^\s*\[(\d{2}):(\d{2})\.(\d{2,3})\](.*)$`)

// ParseSynced 解析 LRC 格式歌词，结果按开始时间升序排列
func ParseSynced(lrc string) []Line {
	var result []Line

	for _, raw := range strings.Split(lrc, "\n") {
		line, ok := parseSyncedLine(strings.TrimRight(raw, "\r"))
		if !ok {
			continue
		}
		result = append(result, line)
	}

	// 输入顺序不可信，相同时间戳保持原有顺序
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })

	for i := 0; i < len(result)-1; i++ {
		end := result[i+1].StartTime
		result[i].EndTime = &end
	}
	return result
}

func parseSyncedLine(raw string) (Line, bool) {
	match := lrcTagPattern.FindStringSubmatch(raw)
	if match == nil {
		return Line{}, false
	}

	min, err := strconv.Atoi(match[1])
	if err != nil {
		return Line{}, false
	}
	sec, err := strconv.Atoi(match[2])
	if err != nil {
		return Line{}, false
	}
	ms, err := strconv.Atoi(match[3])
	if err != nil {
		return Line{}, false
	}
	// 两位小数表示百分之一秒，如 .49 表示 490ms
	if len(match[3]) == 2 {
		ms *= 10
	}

	text := strings.TrimSpace(match[4])
	if text == "" {
		return Line{}, false
	}

	return Line{
		StartTime: float64(min*60+sec) + float64(ms)/1000,
		Text:      text,
	}, true
}

// ParsePlain 将纯文本歌词按行拆分，开始时间为行号，仅用于展示
func ParsePlain(text string) []Line {
	var result []Line
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		result = append(result, Line{StartTime: float64(len(result)), Text: raw})
	}
	return result
}

// HasTimestamps 判断文本中是否至少有一行 LRC 时间标签
func HasTimestamps(text string) bool {
	for _, raw := range strings.Split(text, "\n") {
		if lrcTagPattern.MatchString(strings.TrimRight(raw, "\r")) {
			return true
		}
	}
	return false
}
