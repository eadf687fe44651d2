package policy

// Permission keys guarding the panel's protected resources.
const (
	PermMembersView       = "members.view"
	PermMembersEdit       = "members.edit"
	PermDonationsView     = "donations.view"
	PermDonationsApprove  = "donations.approve"
	PermBeneficiariesView = "beneficiaries.view"
	PermBeneficiariesEdit = "beneficiaries.edit"
	PermRolesManage       = "roles.manage"
)
