package cwidget

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
)

// Input is a labelled entry that parses its text into T and shows parse
// errors under the field. The label shows the value currently in effect.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

// NewIntInput accepts integers of at least minValue. An empty entry means
// defaultValue.
func NewIntInput(label, placeholder string, defaultValue, minValue int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
		Format:       strconv.Itoa,
	}

	input.Validator = func(s string) (int, error) {
		if s == "" {
			return input.DefaultValue, nil
		}
		res, err := strconv.Atoi(s)
		if err != nil {
			return input.DefaultValue, errors.Errorf("%q is not a number", s)
		}
		if res < minValue {
			return input.DefaultValue, errors.Errorf("must be at least %d", minValue)
		}
		return res, nil
	}

	input.build()
	return input
}

func (item *Input[T]) build() {
	item.labelWidget = widget.NewLabel(item.labelFor(item.DefaultValue))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = item.handleText

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) labelFor(v T) string {
	return fmt.Sprintf("%s: %s", item.LabelText, item.Format(v))
}

func (item *Input[T]) handleText(s string) {
	res, err := item.Validator(s)
	item.SetError(err)
	if err != nil {
		return
	}
	item.labelWidget.SetText(item.labelFor(res))
	if item.OnChanged != nil {
		item.OnChanged(res)
	}
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}

// SetValue shows v as the value in effect without touching the entry or
// calling OnChanged.
func (item *Input[T]) SetValue(v T) {
	item.DefaultValue = v
	item.labelWidget.SetText(item.labelFor(v))
}

// Label returns the current label text.
func (item *Input[T]) Label() string {
	return item.labelWidget.Text
}
