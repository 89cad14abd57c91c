package model

type Doctor struct {
	Base
	Name      string `db:"name" json:"name"`
	Specialty string `db:"specialty" json:"specialty"`
	Email     string `db:"email" json:"email"`
	Active    bool   `db:"active" json:"active"`
}

type CreateDoctorRequest struct {
	Name      string `json:"name" binding:"required,max=200"`
	Specialty string `json:"specialty" binding:"omitempty,oneof=general orthodontics endodontics periodontics prosthodontics pediatric oral_surgery hygiene"`
	Email     string `json:"email" binding:"omitempty,email"`
}
