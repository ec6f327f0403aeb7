package leads

// AssignConsultantRequest is the consultant picker form.
type AssignConsultantRequest struct {
	ConsultantID string `json:"consultorId" validate:"required,max=64"`
}

// DeleteLeadRequest is the delete confirmation form.
type DeleteLeadRequest struct {
	Confirm string `validate:"required,eq=yes"`
}

// ListLeadsRequest carries list view parameters.
type ListLeadsRequest struct {
	Search string `json:"search,omitempty"`
	Page   int    `json:"page" validate:"gte=0"`
}

// ListLeadsResponse is the JSON shape of one page of the filtered view.
type ListLeadsResponse struct {
	Leads      []Lead  `json:"leads"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Stats      Summary `json:"stats"`
}
