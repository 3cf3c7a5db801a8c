package envelope

// Media types looked up in the content tree.
const (
	MimeMultipartMixed       = "multipart/mixed"
	MimeMultipartAlternative = "multipart/alternative"
	MimeMultipartRelated     = "multipart/related"
	// signed and encrypted parts must be passed on byte for byte
	MimeMultipartSigned    = "multipart/signed"
	MimeMultipartEncrypted = "multipart/encrypted"

	MimeTextPlain    = "text/plain"
	MimeTextHtml     = "text/html"
	MimeTextCalendar = "text/calendar"

	MimeMessageEmail                   = "message/rfc822"
	MimeMessageDeliveryStatus          = "message/delivery-status"
	MimeMessageDispositionNotification = "message/disposition-notification"

	MimeApplicationOctet        = "application/octet-stream"
	MimeApplicationPkcs7Mime    = "application/pkcs7-mime"
	MimeApplicationPgpEncrypted = "application/pgp-encrypted"
	MimeApplicationPgpSignature = "application/pgp-signature"
)
