package template

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// builtinFn is a pure, string-in/string-out built-in (§4.3: "Built-in
// functions (pure, evaluation-order left to right, string-in/string-out)").
type builtinFn func(args []string) string

var builtins = map[string]builtinFn{
	"upper":     fnUpper,
	"lower":     fnLower,
	"base64":    fnBase64,
	"json":      fnJSON,
	"len":       fnLen,
	"default":   fnDefault,
	"truncate":  fnTruncate,
	"timestamp": fnTimestamp,
	"uuid":      fnUUID,
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func fnUpper(args []string) string { return strings.ToUpper(arg(args, 0)) }
func fnLower(args []string) string { return strings.ToLower(arg(args, 0)) }

func fnBase64(args []string) string {
	return base64.StdEncoding.EncodeToString([]byte(arg(args, 0)))
}

// fnJSON escapes a string for embedding inside a JSON string literal,
// without the surrounding quotes a full json.Marshal would add.
func fnJSON(args []string) string {
	b, err := json.Marshal(arg(args, 0))
	if err != nil {
		return ""
	}
	s := string(b)
	return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
}

func fnLen(args []string) string {
	return strconv.Itoa(utf8.RuneCountInString(arg(args, 0)))
}

// fnDefault returns args[0] unless it is empty, in which case args[1].
func fnDefault(args []string) string {
	v := arg(args, 0)
	if v != "" {
		return v
	}
	return arg(args, 1)
}

// fnTruncate truncates by character (rune) count, per §4.3.
func fnTruncate(args []string) string {
	s := arg(args, 0)
	n, err := strconv.Atoi(arg(args, 1))
	if err != nil || n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func fnTimestamp(args []string) string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func fnUUID(args []string) string {
	return uuid.New().String()
}
