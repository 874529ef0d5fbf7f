package onem2m

// Common resource attributes present on every resource type.
const (
	AttrResourceType     = "ty"
	AttrResourceID       = "ri"
	AttrResourceName     = "rn"
	AttrParentID         = "pi"
	AttrCreationTime     = "ct"
	AttrExpirationTime   = "et"
	AttrLastModifiedTime = "lt"
	AttrLabels           = "lbl"
	AttrStateTag         = "st"
)

// Child-resource rendering keys used by the result-content formatter.
const (
	AttrChildResource = "ch"
	AttrMemberURI     = "val"
	AttrMemberName    = "nm"
	AttrMemberType    = "typ"
)

// AE attributes.
const (
	AttrAppName  = "apn"
	AttrAppID    = "api"
	AttrAEID     = "aei"
	AttrNodeLink = "nl"
)

// Container attributes.
const (
	AttrCreator          = "cr"
	AttrMaxNrInstances   = "mni"
	AttrMaxByteSize      = "mbs"
	AttrMaxInstanceAge   = "mia"
	AttrCurrNrInstances  = "cni"
	AttrCurrByteSize     = "cbs"
	AttrOntologyRef      = "or"
	AttrLatest           = "la"
	AttrOldest           = "ol"
	AttrDisableRetrieval = "dt"
)

// ContentInstance attributes.
const (
	AttrContentInfo = "cnf"
	AttrContentSize = "cs"
	AttrContent     = "con"
)

// Subscription attributes.
const (
	AttrNotificationURI         = "nu"
	AttrNotificationContentType = "nct"
	AttrNotificationEventCat    = "nec"
	AttrSubscriberURI           = "su"
)

// CSE base attributes.
const (
	AttrCseType                = "cst"
	AttrCseID                  = "csi"
	AttrSupportedResourceTypes = "srt"
	AttrPointOfAccess          = "poa"
)

// RemoteCSE attributes.
const (
	AttrAnnounceTo          = "at"
	AttrAnnouncedAttribute  = "aa"
	AttrCseBase             = "cb"
	AttrM2MExtID            = "mei"
	AttrTriggerRecipientID  = "tri"
	AttrRequestReachability = "rr"
)

// AccessControlPolicy attributes.
const (
	AttrPrivileges               = "pv"
	AttrSelfPrivileges           = "pvs"
	AttrAccessControlRules       = "acr"
	AttrAccessControlOriginators = "acor"
	AttrAccessControlOperations  = "acop"
	AttrAccessControlPolicyIDs   = "acpi"
)

// Access-control operation bitmask values (acop).
const (
	AcopCreate   = 1
	AcopRetrieve = 2
	AcopUpdate   = 4
	AcopDelete   = 8
	AcopNotify   = 16
	AcopDiscover = 32
)

// Notification payload keys.
const (
	NotificationEvent        = "nev"
	NotificationRep          = "rep"
	NotificationOperationMon = "om"
	NotificationOperation    = "op"
	NotificationOriginator   = "or"
	SubscriptionDeletion     = "sud"
	SubscriptionReference    = "sur"
)
