package model

// Folder is a mail folder as returned by the mailbox.
type Folder struct {
	ID          string
	DisplayName string
}

// Skeleton holds the folder ids provisioned at startup. Read-only afterwards.
type Skeleton struct {
	Root        string
	Properties  string
	Operational string
	NeedsReview string
}
