package header

import "strings"

// Info describes how a well-known header field is named and ordered.
type Info struct {
	Name     string
	Position int
	// Unique fields appear at most once in a header block.
	Unique bool
	// Prepend fields are added in front of existing instances.
	Prepend bool
	// First fields belong at the top of the header block.
	First bool
}

var (
	ReturnPath              = Info{Name: "Return-Path", Position: 1, Prepend: true}
	Received                = Info{Name: "Received", Position: 2, Prepend: true}
	ResentDate              = Info{Name: "Resent-Date", Position: 3, First: true}
	ResentFrom              = Info{Name: "Resent-From", Position: 3, First: true}
	ResentSender            = Info{Name: "Resent-Sender", Position: 3, First: true}
	ResentTo                = Info{Name: "Resent-To", Position: 3, First: true}
	ResentCc                = Info{Name: "Resent-Cc", Position: 3, First: true}
	ResentBcc               = Info{Name: "Resent-Bcc", Position: 3, First: true}
	ResentMessageID         = Info{Name: "Resent-Message-ID", Position: 3, First: true}
	Date                    = Info{Name: "Date", Position: 4, Unique: true}
	From                    = Info{Name: "From", Position: 5}
	Sender                  = Info{Name: "Sender", Position: 6, Unique: true}
	ReplyTo                 = Info{Name: "Reply-To", Position: 7, Unique: true}
	To                      = Info{Name: "To", Position: 8}
	Cc                      = Info{Name: "Cc", Position: 9}
	Bcc                     = Info{Name: "Bcc", Position: 10}
	MessageID               = Info{Name: "Message-ID", Position: 11, Unique: true}
	InReplyTo               = Info{Name: "In-Reply-To", Position: 12, Unique: true}
	References              = Info{Name: "References", Position: 13, Unique: true}
	Subject                 = Info{Name: "Subject", Position: 14, Unique: true}
	Comments                = Info{Name: "Comments", Position: 15, Unique: true}
	Keywords                = Info{Name: "Keywords", Position: 16, Unique: true}
	ErrorsTo                = Info{Name: "Errors-To", Position: 17, Unique: true}
	MIMEVersion             = Info{Name: "MIME-Version", Position: 18, Unique: true}
	ContentTypeInfo         = Info{Name: "Content-Type", Position: 19, Unique: true}
	ContentDispositionInfo  = Info{Name: "Content-Disposition", Position: 20, Unique: true}
	ContentTransferEncoding = Info{Name: "Content-Transfer-Encoding", Position: 21, Unique: true}
	Other                   = Info{Position: 30}
	ContentLength           = Info{Name: "Content-Length", Position: 49, Unique: true}
	Status                  = Info{Name: "Status", Position: 50, Unique: true}
)

var infos = func() map[string]Info {
	m := make(map[string]Info, 32)
	for _, i := range []Info{
		ReturnPath, Received, ResentDate, ResentFrom, ResentSender, ResentTo, ResentCc,
		ResentBcc, ResentMessageID, Date, From, Sender, ReplyTo, To, Cc, Bcc, MessageID,
		InReplyTo, References, Subject, Comments, Keywords, ErrorsTo, MIMEVersion,
		ContentTypeInfo, ContentDispositionInfo, ContentTransferEncoding, ContentLength, Status,
	} {
		m[strings.ToLower(i.Name)] = i
	}
	return m
}()

// LookupInfo returns the table entry for name, or Other.
func LookupInfo(name string) Info {
	if i, ok := infos[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i
	}
	return Other
}

// CanonicalName returns the conventional casing for well-known fields and
// name unchanged otherwise.
func CanonicalName(name string) string {
	if i := LookupInfo(name); i.Name != "" {
		return i.Name
	}
	return name
}
