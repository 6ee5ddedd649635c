package expr

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/pity-fox/cleantools/pkg/fsutil"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		// `pathBase` returns the last element of the path.
		// Example: targets.exists(t, pathBase(t) == "cache").
		cel.Function("pathBase", stringFunc("path_base", filepath.Base)),

		// `pathDir` returns all but the last element of the path.
		// Example: targets.all(t, pathDir(t).startsWith("/tmp")).
		cel.Function("pathDir", stringFunc("path_dir", filepath.Dir)),

		// `pathExt` returns the file extension of the path.
		// Example: targets.exists(t, pathExt(t) == ".log").
		cel.Function("pathExt", stringFunc("path_ext", filepath.Ext)),

		// `pathExists` reports whether the path exists on this machine.
		// Example: targets.exists(t, pathExists(t)).
		cel.Function("pathExists",
			cel.Overload("path_exists", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					s, ok := path.Value().(string)
					if !ok {
						return types.NewErr("pathExists: invalid string value")
					}

					return types.Bool(fsutil.Exists(s))
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func stringFunc(overload string, f func(string) string) cel.FunctionOpt {
	return cel.Overload(overload, []*cel.Type{cel.StringType}, cel.StringType,
		cel.UnaryBinding(func(path ref.Val) ref.Val {
			s, ok := path.Value().(string)
			if !ok {
				return types.NewErr("%s: invalid string value", overload)
			}

			return types.String(f(s))
		}),
	)
}
