package model

import (
	"path/filepath"
	"strings"
)

// ActionType is the tag of an action as written in the config file
type ActionType string

const (
	ActionTypeInlineScript ActionType = "inline-script"
	ActionTypeFileScript   ActionType = "file-script"
)

// Action is one reaction step. The only implementations are *InlineScript
// and *FileScript.
type Action interface {
	Type() ActionType
	WorkingDir() string
	DisplayName() string
	action()
}

// InlineScript runs Command as-is through the shell
type InlineScript struct {
	Name    string
	Cwd     string
	Command string
}

func (a *InlineScript) Type() ActionType    { return ActionTypeInlineScript }
func (a *InlineScript) WorkingDir() string  { return a.Cwd }
func (a *InlineScript) DisplayName() string { return a.Name }
func (a *InlineScript) action()             {}

// FileScript runs the script at Path with Args
type FileScript struct {
	Name string
	Cwd  string
	Path string
	Args []string
}

func (a *FileScript) Type() ActionType    { return ActionTypeFileScript }
func (a *FileScript) WorkingDir() string  { return a.Cwd }
func (a *FileScript) DisplayName() string { return a.Name }
func (a *FileScript) action()             {}

// ActionName returns the explicit name, else the inline command, else the
// script path
func ActionName(a Action) string {
	if name := a.DisplayName(); name != "" {
		return name
	}
	switch v := a.(type) {
	case *InlineScript:
		return v.Command
	case *FileScript:
		return v.Path
	default:
		return ""
	}
}

// CommandLine builds the shell command line for an action
func CommandLine(a Action) string {
	switch v := a.(type) {
	case *InlineScript:
		return v.Command
	case *FileScript:
		path := v.Path
		// a bare relative path would otherwise be looked up in $PATH
		if !filepath.IsAbs(path) && !strings.HasPrefix(path, "./") && !strings.HasPrefix(path, "../") {
			path = "./" + path
		}
		if len(v.Args) == 0 {
			return path
		}
		return path + " " + strings.Join(v.Args, " ")
	default:
		return ""
	}
}
