// Package messages provides the user-facing text produced while loading and
// running rules.
//
// Core packages never format locale text themselves. They emit a [Key] and
// its arguments through a [Catalog], and hand the result to a [Sink].
package messages

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a message in a [Catalog].
type Key string

const (
	RuleStart          Key = "rule.start"
	RuleFinished       Key = "rule.finished"
	RuleFinishedFailed Key = "rule.finished.failed"
	RuleScriptMissing  Key = "rule.script.missing"

	FileDeleted     Key = "clean.file.deleted"
	DirCleaned      Key = "clean.dir.cleaned"
	PathMissing     Key = "clean.path.missing"
	CleanFailed     Key = "clean.failed"
	UnknownLine     Key = "script.unknown"
	CommandStart    Key = "command.start"
	CommandOK       Key = "command.ok"
	CommandOutput   Key = "command.output"
	CommandFailed   Key = "command.failed"
	CommandStderr   Key = "command.stderr"
	CommandTimeout  Key = "command.timeout"
	CommandError    Key = "command.error"
	CommandDisabled Key = "command.dryrun"

	IntegrityMissing    Key = "integrity.missing"
	IntegrityCorrupt    Key = "integrity.corrupt"
	IntegrityTampered   Key = "integrity.tampered"
	IntegrityValid      Key = "integrity.valid"
	IntegrityIOError    Key = "integrity.io"
	IntegrityRedacted   Key = "integrity.redacted"
	SecurityTampered    Key = "security.tampered"
	SecurityUnverified  Key = "security.unverified"
	SecurityVerifyError Key = "security.error"
	RuleLoadFailed      Key = "rule.load.failed"

	ExecutionDenied Key = "execution.denied"
)

var english = map[Key]string{
	RuleStart:          "Executing cleaning rule: %s",
	RuleFinished:       "Cleaning rule finished: %s",
	RuleFinishedFailed: "Cleaning rule finished with %d failed line(s): %s",
	RuleScriptMissing:  "Rule script does not exist: %s",

	FileDeleted:     "Deleted file: %s",
	DirCleaned:      "Cleaned directory: %s (%d files removed)",
	PathMissing:     "Path does not exist: %s",
	CleanFailed:     "Failed to clean path %s: %v",
	UnknownLine:     "Unrecognized rule format on line %d: %s",
	CommandStart:    "Running command: %s",
	CommandOK:       "Command succeeded",
	CommandOutput:   "Output: %s",
	CommandFailed:   "Command failed with exit code %d",
	CommandStderr:   "Error: %s",
	CommandTimeout:  "Command timed out after %v: %s",
	CommandError:    "Failed to run command %s: %v",
	CommandDisabled: "Dry run, skipping: %s",

	IntegrityMissing:    "missing required files",
	IntegrityCorrupt:    "integrity file is corrupt or the key does not match",
	IntegrityTampered:   "%s has been tampered with",
	IntegrityValid:      "file integrity verified",
	IntegrityIOError:    "verification failed: %v",
	IntegrityRedacted:   "cannot verify: the author name is masked",
	SecurityTampered:    "Security warning: tampering detected in rule %s (%s), execution is blocked",
	SecurityUnverified:  "Security warning: cannot verify the integrity of rule %s because the author name is masked, execution is blocked",
	SecurityVerifyError: "Security warning: integrity check of rule %s failed (%s), execution is blocked",
	RuleLoadFailed:      "Failed to load rule %s: %v",

	ExecutionDenied: "Execution of rule %s refused: %s",
}

var simplifiedChinese = map[Key]string{
	RuleStart:          "开始执行清理规则: %s",
	RuleFinished:       "清理规则执行完成: %s",
	RuleFinishedFailed: "清理规则执行完成，%d 行失败: %s",
	RuleScriptMissing:  "规则文件不存在: %s",

	FileDeleted:     "已删除文件: %s",
	DirCleaned:      "已清理目录: %s (删除 %d 个文件)",
	PathMissing:     "路径不存在: %s",
	CleanFailed:     "清理路径失败 %s: %v",
	UnknownLine:     "未知规则格式 (第 %d 行): %s",
	CommandStart:    "执行命令: %s",
	CommandOK:       "命令执行成功",
	CommandOutput:   "输出: %s",
	CommandFailed:   "命令执行失败，返回码: %d",
	CommandStderr:   "错误: %s",
	CommandTimeout:  "命令执行超时 (%v): %s",
	CommandError:    "执行命令失败 %s: %v",
	CommandDisabled: "演练模式，跳过: %s",

	IntegrityMissing:    "缺少必要文件",
	IntegrityCorrupt:    "完整性文件已损坏或密钥错误",
	IntegrityTampered:   "%s 已被篡改",
	IntegrityValid:      "文件完整性验证通过",
	IntegrityIOError:    "验证过程出错: %v",
	IntegrityRedacted:   "无法验证 - 作者名已掩码",
	SecurityTampered:    "安全警告: 检测到文件篡改 %s (%s)，禁止执行清理操作",
	SecurityUnverified:  "安全警告: 无法验证加密文件 %s 的完整性 - 作者名已被掩码，禁止执行清理操作",
	SecurityVerifyError: "安全警告: 完整性验证出错 %s (%s)，禁止执行清理操作",
	RuleLoadFailed:      "加载规则失败 %s: %v",

	ExecutionDenied: "拒绝执行规则 %s: %s",
}

// Catalog formats messages for one language.
type Catalog interface {
	Sprintf(key Key, args ...any) string
}

// Printer is a [Catalog] backed by [message.Printer].
type Printer struct {
	p *message.Printer
}

// Supported lists the languages with registered translations.
var Supported = []language.Tag{language.English, language.SimplifiedChinese}

var builder = mustBuild()

func mustBuild() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for tag, msgs := range map[language.Tag]map[Key]string{
		language.English:           english,
		language.SimplifiedChinese: simplifiedChinese,
	} {
		for k, v := range msgs {
			if err := b.SetString(tag, string(k), v); err != nil {
				panic(fmt.Errorf("register message %q: %w", k, err))
			}
		}
	}

	return b
}

// NewPrinter returns a [Printer] for the closest supported match of tag.
func NewPrinter(tag language.Tag) *Printer {
	_, idx, _ := language.NewMatcher(Supported).Match(tag)
	matched := Supported[idx]

	return &Printer{p: message.NewPrinter(matched, message.Catalog(builder))}
}

// NewPrinterFromString parses a BCP 47 language name, falling back to English.
func NewPrinterFromString(lang string) *Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}

	return NewPrinter(tag)
}

// Default is the English catalog.
var Default Catalog = NewPrinter(language.English)

// Sprintf formats the message for key.
func (p *Printer) Sprintf(key Key, args ...any) string {
	return p.p.Sprintf(string(key), args...)
}
