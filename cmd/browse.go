package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagegate/internal/browser/capture"
	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/window"
)

// Readiness states accepted by `pagegate wait --state`.
const (
	statePresent   = "present"
	stateVisible   = "visible"
	stateClickable = "clickable"
	stateSelected  = "selected"
)

func newWaitCommand(a *app) *cobra.Command {
	var xpath, value, state string
	cmd := &cobra.Command{
		Use:   "wait [url]",
		Short: "Wait until an element reaches a readiness state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acc, done, err := a.open(ctx, urlArg(args))
			if err != nil {
				return err
			}
			defer done()

			loc := locatorFrom(xpath, value)
			var el driver.Element
			switch state {
			case statePresent:
				el, err = acc.GetElement(ctx, loc)
			case stateVisible:
				if _, err = acc.ElementDisplayed(ctx, loc); err == nil {
					el, err = acc.FindElement(ctx, loc)
				}
			case stateClickable:
				if el, err = acc.GetElement(ctx, loc); err == nil {
					el, err = acc.WaitUntilClickable(ctx, el)
				}
			case stateSelected:
				if _, err = acc.WaitUntilSelected(ctx, loc); err == nil {
					el, err = acc.FindElement(ctx, loc)
				}
			default:
				return fmt.Errorf("unknown state %q (present, visible, clickable, selected)", state)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, describe(el))
			return nil
		},
	}
	cmd.Flags().StringVar(&xpath, "xpath", "", "XPath of the element, optionally a template with one %s")
	cmd.Flags().StringVar(&value, "value", "", "value substituted into the --xpath template")
	cmd.Flags().StringVar(&state, "state", statePresent, "state to wait for: present, visible, clickable or selected")
	_ = cmd.MarkFlagRequired("xpath")
	return cmd
}

func newClickCommand(a *app) *cobra.Command {
	var xpath, value string
	var scroll, toggle bool
	cmd := &cobra.Command{
		Use:   "click [url]",
		Short: "Click an element once it is clickable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acc, done, err := a.open(ctx, urlArg(args))
			if err != nil {
				return err
			}
			defer done()

			loc := locatorFrom(xpath, value)
			switch {
			case toggle:
				el, err := acc.GetElement(ctx, loc)
				if err != nil {
					return err
				}
				res := acc.Toggle(ctx, el, loc.Query())
				fmt.Fprintln(cmd.OutOrStdout(), res.Outcome)
				return res.Err
			case scroll:
				err = acc.ScrollAndClick(ctx, loc)
			default:
				err = acc.ClickLocator(ctx, loc)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "clicked")
			return nil
		},
	}
	cmd.Flags().StringVar(&xpath, "xpath", "", "XPath of the element, optionally a template with one %s")
	cmd.Flags().StringVar(&value, "value", "", "value substituted into the --xpath template")
	cmd.Flags().BoolVar(&scroll, "scroll", false, "scroll the element into view before clicking")
	cmd.Flags().BoolVar(&toggle, "toggle", false, "select a checkbox or radio button, leaving it alone when already selected")
	_ = cmd.MarkFlagRequired("xpath")
	return cmd
}

func newTypeCommand(a *app) *cobra.Command {
	var xpath, value, text string
	cmd := &cobra.Command{
		Use:   "type [url]",
		Short: "Click an input and type text into it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acc, done, err := a.open(ctx, urlArg(args))
			if err != nil {
				return err
			}
			defer done()

			loc := locatorFrom(xpath, value)
			if err := acc.ClickAndType(ctx, loc, text); err != nil {
				return err
			}
			el, err := acc.FindElement(ctx, loc)
			if err != nil {
				return err
			}
			got, err := el.Attribute(ctx, "value")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), got)
			return nil
		},
	}
	cmd.Flags().StringVar(&xpath, "xpath", "", "XPath of the input, optionally a template with one %s")
	cmd.Flags().StringVar(&value, "value", "", "value substituted into the --xpath template")
	cmd.Flags().StringVar(&text, "text", "", "text to type")
	_ = cmd.MarkFlagRequired("xpath")
	return cmd
}

func newScreenshotCommand(a *app) *cobra.Command {
	var name string
	var named bool
	cmd := &cobra.Command{
		Use:   "screenshot [url]",
		Short: "Save a PNG of the viewport",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acc, done, err := a.open(ctx, urlArg(args))
			if err != nil {
				return err
			}
			defer done()

			w, err := capture.New(acc.Driver(), a.cfg.Screenshot, a.fs, a.logger)
			if err != nil {
				return err
			}
			var path string
			if named {
				path, err = w.CaptureNamed(ctx, name)
			} else {
				path, err = w.Capture(ctx, name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "screenshot", "file name prefix")
	cmd.Flags().BoolVar(&named, "named", false, "write <named_dir>/<name>.PNG without a timestamp")
	return cmd
}

func newPopupCommand(a *app) *cobra.Command {
	var xpath, value string
	cmd := &cobra.Command{
		Use:   "popup [url]",
		Short: "Click an element that opens a window and report the new window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acc, done, err := a.open(ctx, urlArg(args))
			if err != nil {
				return err
			}
			defer done()

			coord := window.New(acc.Driver(), a.logger)
			s, err := coord.RecordParent(ctx)
			if err != nil {
				return err
			}
			if err := acc.ClickLocator(ctx, locatorFrom(xpath, value)); err != nil {
				return err
			}
			child, err := coord.SwitchToChild(ctx, s)
			if err != nil {
				return err
			}
			if child == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no child window opened")
				return nil
			}
			title, err := acc.Title(ctx)
			if err != nil {
				return err
			}
			url, err := acc.CurrentURL(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", title, url)
			return coord.CloseChild(ctx, s)
		},
	}
	cmd.Flags().StringVar(&xpath, "xpath", "", "XPath of the element that opens the window")
	cmd.Flags().StringVar(&value, "value", "", "value substituted into the --xpath template")
	_ = cmd.MarkFlagRequired("xpath")
	return cmd
}
