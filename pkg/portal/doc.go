// Package portal holds the student portal features that sit on top of the
// record store, object store and identity provider: the materials catalog,
// download tracking and analytics, referral codes, study guides and
// feedback.
package portal

const (
	collectionDownloads   = "material_downloads"
	collectionReferrals   = "referral_codes"
	collectionRedemptions = "user_referral_codes"
	collectionGuides      = "study_guides"
	collectionFeedback    = "feedback"
	collectionProfiles    = "profiles"
)
