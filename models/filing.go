package models

// FilingReference points to one filing body listed in a quarterly index
type FilingReference struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	FormType    string `json:"form_type"`
	FilingDate  string `json:"filing_date"`
	DocumentURL string `json:"document_url"`
	IndexURL    string `json:"index_url"`
}

// FilingMeta is the institution and period context attached to every
// holding extracted from a single filing body
type FilingMeta struct {
	Period        Period
	InstitutionID string
	Institution   string
	FilingDate    string
}

// Meta derives the extraction context of a filing listed in the index for p.
func (f FilingReference) Meta(p Period) FilingMeta {
	return FilingMeta{
		Period:        p,
		InstitutionID: f.CompanyID,
		Institution:   f.CompanyName,
		FilingDate:    f.FilingDate,
	}
}
