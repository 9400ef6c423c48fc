package service

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Client   ClientInfo
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceName string
	Client     ClientInfo
}

type LoginMFAInput struct {
	MFAToken   string
	Code       string
	DeviceName string
	Client     ClientInfo
}

type LoginResult struct {
	AccessToken       string
	ExpiresIn         int64
	RefreshToken      string
	RefreshExpiresIn  int64
	MFARequired       bool
	MFAToken          string
	MFATokenExpiresIn int64
}

// MFASetup is returned by EnableMFA. The raw secret and backup codes are
// shown to the user exactly once; only hashes and the encrypted secret are
// persisted.
type MFASetup struct {
	Secret      string
	QRCodeURI   string
	BackupCodes []string
}

type MFAStatus struct {
	Enabled              bool
	BackupCodesRemaining int64
}
