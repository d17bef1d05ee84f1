package processors

import "github.com/username/dividendlog/backend/src/models"

// DividendProcessor enriches parsed dividend records with values that do not
// depend on the source broker.
type DividendProcessor interface {
	Enrich(rec *models.DividendRecord) []string
	DeriveFields(rec *models.DividendRecord)
	MissingSettlementFields(rec models.DividendRecord) []string
}
