// Command data-check feeds a mail message through a DATA transaction and
// prints what the engine saw: the header/body boundary, header fields, MIME
// parts and attachments.
//
// The message is read from the file given as the first argument, or from
// stdin. Bare LF line endings are accepted, the engine canonicalizes them.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/text/transform"

	"github.com/xyster000/FirstSMTP"
	"github.com/xyster000/FirstSMTP/mailheader"
	"github.com/xyster000/FirstSMTP/sink"
	"github.com/xyster000/FirstSMTP/smtputil"
)

func main() {
	maxHeaderLines := flag.Int("max-header-lines", smtpdata.DefaultMaxHeaderLines, "Maximum number of header lines to store")
	encodingName := flag.String("encoding", "utf-8", "Text encoding used to store header lines")
	banner := flag.String("banner", "", "Banner text to insert into text parts")
	discard := flag.Bool("discard", false, "Parse the message but do not keep the output")
	raw := flag.Bool("raw", false, "Input is a bare message, not wire-format DATA; stuff dots before feeding it")
	flag.Parse()

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		in = f
	}
	if *raw {
		in = transform.NewReader(in, transform.Chain(
			&smtputil.CrLfCanonicalizationTransformer{},
			&smtputil.DotStuffingTransformer{},
		))
	}

	stream := sink.NewMessageStream(0)
	defer stream.Close()
	trx := smtpdata.New(stream,
		smtpdata.WithMaxHeaderLines(*maxHeaderLines),
		smtpdata.WithEncoding(*encodingName),
	)
	trx.DiscardData = *discard
	if *banner != "" {
		trx.SetBanner(*banner, "")
	}
	type attachment struct{ contentType, filename string }
	var attachments []attachment
	trx.AddAttachmentHook(func(contentType, filename string, _ *mailheader.Header) {
		attachments = append(attachments, attachment{contentType, filename})
	})

	scanner := smtputil.GetLineScanner(in)
	defer scanner.Close()
	for scanner.Scan() {
		if err := trx.AddData(scanner.Bytes()); err != nil {
			log.Println("add data:", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
	done := make(chan error, 1)
	trx.EndData(func(err error) { done <- err })
	if err := <-done; err != nil {
		log.Fatal(err)
	}

	boundary, found := trx.HeaderBoundary()
	fmt.Printf("transaction:     %s\n", trx.ID())
	fmt.Printf("boundary found:  %v\n", found)
	fmt.Printf("header lines:    %d\n", boundary)
	fmt.Printf("header fields:   %d\n", trx.Header().Len())
	fmt.Printf("mime parts:      %d\n", trx.MimePartCount())
	fmt.Printf("bytes in:        %d\n", trx.DataBytes())
	if !trx.DiscardData {
		fmt.Printf("bytes out:       %d\n", stream.Bytes())
	}
	for _, a := range attachments {
		name := a.filename
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("attachment:      %s %s\n", a.contentType, name)
	}
}
