package script_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pity-fox/cleantools/pkg/script"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input string
		want  []script.Instruction
	}{
		"empty": {
			input: "",
			want:  nil,
		},
		"comments and blank lines": {
			input: "# header\n\n   \n\t# indented comment\n",
			want:  nil,
		},
		"clean and system": {
			input: "cl /tmp/a.txt\nsystem echo hi\n",
			want: []script.Instruction{
				{Text: "cl /tmp/a.txt", Arg: "/tmp/a.txt", Line: 1, Op: script.OpClean},
				{Text: "system echo hi", Arg: "echo hi", Line: 2, Op: script.OpSystem},
			},
		},
		"surrounding whitespace and CRLF": {
			input: "  cl   C:\\tmp\\a.txt  \r\n\r\n\tsystem  del /q x\r\n",
			want: []script.Instruction{
				{Text: "cl   C:\\tmp\\a.txt", Arg: "C:\\tmp\\a.txt", Line: 1, Op: script.OpClean},
				{Text: "system  del /q x", Arg: "del /q x", Line: 3, Op: script.OpSystem},
			},
		},
		"unknown lines keep their line number": {
			input: "# c\nrm -rf /\ncl\nsystemctl stop x\n",
			want: []script.Instruction{
				{Text: "rm -rf /", Line: 2, Op: script.OpUnknown},
				{Text: "cl", Line: 3, Op: script.OpUnknown},
				{Text: "systemctl stop x", Line: 4, Op: script.OpUnknown},
			},
		},
		"prefixes are case sensitive": {
			input: "CL /tmp\nSystem ls",
			want: []script.Instruction{
				{Text: "CL /tmp", Line: 1, Op: script.OpUnknown},
				{Text: "System ls", Line: 2, Op: script.OpUnknown},
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, script.Parse(tc.input))
		})
	}
}

func TestOpString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cl", script.OpClean.String())
	assert.Equal(t, "system", script.OpSystem.String())
	assert.Equal(t, "unknown", script.OpUnknown.String())
}
