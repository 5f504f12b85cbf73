package session

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrInterrupted reports that the user aborted a prompt (ctrl-c/esc).
// The loop treats it as an implicit quit; the current item is kept.
var ErrInterrupted = errors.New("prompt interrupted")

// Option is one selectable menu entry.
type Option struct {
	Key   string
	Label string
}

// Prompter is the interaction boundary of the review loop. The huh
// implementation is the production one; tests script their own.
type Prompter interface {
	Confirm(title string, def bool) (bool, error)
	Select(title string, options []Option) (string, error)
	Text(title, initial string) (string, error)
}

// HuhPrompter renders prompts with charmbracelet/huh standalone forms.
type HuhPrompter struct{}

func (HuhPrompter) Confirm(title string, def bool) (bool, error) {
	v := def
	err := huh.NewConfirm().Title(title).Value(&v).Run()
	if err != nil {
		return false, mapAbort(err)
	}
	return v, nil
}

func (HuhPrompter) Select(title string, options []Option) (string, error) {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Key)
	}
	var v string
	err := huh.NewSelect[string]().Title(title).Options(opts...).Value(&v).Run()
	if err != nil {
		return "", mapAbort(err)
	}
	return v, nil
}

func (HuhPrompter) Text(title, initial string) (string, error) {
	v := initial
	err := huh.NewText().Title(title).Value(&v).Run()
	if err != nil {
		return "", mapAbort(err)
	}
	return v, nil
}

func mapAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrInterrupted
	}
	return err
}
