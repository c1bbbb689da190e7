package highlight

import (
	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/google/uuid"
)

// ParseDocumentRef validates that both ids are UUIDs and returns them in
// canonical lowercase form.
func ParseDocumentRef(orgID, docID string) (DocumentRef, error) {
	org, err := uuid.Parse(orgID)
	if err != nil {
		return DocumentRef{}, herrors.NewInvalidDocumentRefError(orgID, docID, err)
	}
	doc, err := uuid.Parse(docID)
	if err != nil {
		return DocumentRef{}, herrors.NewInvalidDocumentRefError(orgID, docID, err)
	}
	return DocumentRef{OrganizationID: org.String(), DocumentID: doc.String()}, nil
}
