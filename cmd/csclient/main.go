package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jgivc/csclient/internal/app"
	"github.com/jgivc/csclient/internal/config"
	"github.com/jgivc/csclient/internal/service/workflow"
)

const usage = `Usage: csclient [-c config.yml] <command> [options]

Commands:
  send      send files to recipients
  status    show transfer status
  download  download a received transfer
`

type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	*l = append(*l, value)

	return nil
}

type stdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *stdinPrompter) PromptCode(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(p.out, "Verification code sent to %s: ", email)

	code, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimSpace(code), nil
}

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad(*cfgFileName)

	a, err := app.New(cfg, &stdinPrompter{in: bufio.NewReader(os.Stdin), out: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "send":
		err = runSend(ctx, a, args)
	case "status":
		err = runStatus(ctx, a, args)
	case "download":
		err = runDownload(ctx, a, args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		a.Close()
		os.Exit(1)
	}
}

func runSend(ctx context.Context, a *app.App, args []string) error {
	var opts app.SendOptions

	fs := flag.NewFlagSet("send", flag.ExitOnError)
	fs.Var((*listFlag)(&opts.To), "to", "Recipient email, may be repeated or comma separated")
	fs.Var((*listFlag)(&opts.Cc), "cc", "Cc recipient email")
	fs.Var((*listFlag)(&opts.Bcc), "bcc", "Bcc recipient email")
	fs.StringVar(&opts.Password, "password", "", "Transfer password, generated when empty")
	fs.StringVar(&opts.Subject, "subject", "", "Notification subject")
	fs.StringVar(&opts.Message, "message", "", "Notification message")
	fs.StringVar(&opts.MessageFile, "message-file", "", "Markdown file with the notification message")
	fs.StringVar(&opts.Language, "lang", "", "Recipient language, detected when empty")
	fs.StringVar(&opts.Expiration, "expire", "", "Expiration date or 1d, 2w, 1m, tomorrow")
	nonInteractive := fs.Bool("batch", false, "Fail instead of asking for a verification code")

	if err := fs.Parse(args); err != nil {
		return err
	}

	opts.Files = fs.Args()
	opts.Interactive = !*nonInteractive

	res, err := a.Send(ctx, opts)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case workflow.OutcomePolicyRejected:
		fmt.Println("Transfer is not allowed by policy")

		for _, email := range res.Policy.FailedEmailAddresses() {
			fmt.Println("  not allowed:", email)
		}

		return errors.New("transfer rejected")
	case workflow.OutcomePasswordRejected:
		fmt.Println("Password does not satisfy the server rules:")

		for _, rule := range res.PasswordRules {
			fmt.Println("  " + rule)
		}

		return errors.New("transfer rejected")
	}

	fmt.Println("Tracking ID:", res.TrackingID)

	if res.Password != "" {
		fmt.Println("Password:", res.Password)
	}

	if res.Status != nil {
		fmt.Println("Status:", res.Status.Status)
	}

	return nil
}

func runStatus(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	nonInteractive := fs.Bool("batch", false, "Fail instead of asking for a verification code")

	if err := fs.Parse(args); err != nil {
		return err
	}

	statuses, err := a.Status(ctx, fs.Arg(0), !*nonInteractive)
	if err != nil {
		return err
	}

	for _, st := range statuses {
		fmt.Printf("%s\t%s\n", st.TrackingID, st.Status)
	}

	return nil
}

func runDownload(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	password := fs.String("password", "", "Transfer password")
	dir := fs.String("dir", "", "Target directory")
	archive := fs.String("archive", "", "Download as one zip or eml file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("download needs exactly one transfer id")
	}

	paths, err := a.Download(ctx, fs.Arg(0), *password, *dir, *archive)
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Println(path)
	}

	return nil
}
