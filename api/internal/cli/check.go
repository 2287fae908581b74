package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/handle"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/render"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/upload"
	"compliance-check/api/internal/view"
)

func newCheckCommand(o *options) *cobra.Command {
	var focus, output string
	cmd := &cobra.Command{
		Use:   "check <image>",
		Short: "Check one screenshot from the terminal",
		Example: `  compliance check ad.png
  compliance check signup.jpg --focus "GDPR consent" -o markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.check(cmd.Context(), cmd.OutOrStdout(), args[0], focus, output)
		},
	}
	cmd.Flags().StringVarP(&focus, "focus", "f", "", "regulation or law to focus on")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, markdown)")
	return cmd
}

func (o *options) check(ctx context.Context, w io.Writer, path, focus, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	cfg, log, err := o.load(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := o.client(ctx, cfg, log)
	if err != nil {
		return err
	}
	uploads := upload.NewSurface(preview.NewMemory(), cfg.MaxUploadBytes, log)
	f, err := uploads.OnPick(ctx, []upload.File{upload.Path(path)})
	if err != nil {
		return fmt.Errorf("%s: %s", path, analysis.UserMessage(err))
	}

	s := session.New("cli", client, log)
	defer s.Close(context.WithoutCancel(ctx))
	s.SetFocusArea(focus)
	s.SelectFile(ctx, f)

	res, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %s", view.FailedTitle, analysis.UserMessage(err))
	}
	return writeReport(w, res, format, o.noColor)
}

func writeReport(w io.Writer, res analysis.Result, format string, noColor bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(handle.NewAnalyzeResponse(res))
	case "markdown":
		_, err := io.WriteString(w, markdownReport(res))
		return err
	default:
		th := render.DefaultTheme()
		if noColor {
			th = render.PlainTheme()
		}
		_, err := io.WriteString(w, terminalReport(res, th))
		return err
	}
}

func terminalReport(res analysis.Result, th render.Theme) string {
	var b strings.Builder
	b.WriteString(th.H2.Render(view.ReportTitle))
	b.WriteString("\n\n")
	b.WriteString(render.Terminal(render.Render(res.Text), th))
	if links := res.Links(); len(links) > 0 {
		b.WriteString("\n")
		b.WriteString(th.H3.Render(view.SourcesTitle))
		b.WriteString("\n")
		for i, l := range links {
			fmt.Fprintf(&b, "  %d. %s\n     %s\n", i+1, l.DisplayTitle(), th.Link.Render(l.URI))
		}
	}
	return b.String()
}

func markdownReport(res analysis.Result) string {
	var b strings.Builder
	b.WriteString("# " + view.ReportTitle + "\n\n")
	b.WriteString(strings.TrimRight(res.Text, "\n"))
	b.WriteString("\n")
	if links := res.Links(); len(links) > 0 {
		b.WriteString("\n## " + view.SourcesTitle + "\n\n")
		for _, l := range links {
			fmt.Fprintf(&b, "- [%s](%s)\n", l.DisplayTitle(), l.URI)
		}
	}
	return b.String()
}
