package instagram

// Page URLs. The path fragments mark challenge surfaces in the current
// location during the manual-completion wait.
const (
	baseURL  = "https://www.instagram.com"
	loginURL = baseURL + "/accounts/login/"

	challengePath = "/challenge/"
	twoFactorPath = "two_factor"
)

// Login form selectors
const (
	usernameInputSel = "input[name='username']"
	passwordInputSel = "input[name='password']"
	loginSubmitSel   = "button[type='submit']"
	loginErrorSel    = "#slfErrorAlert, div[role='alert']"
)

// Second-factor challenge markers. Detection requires BOTH the
// structural input and one of the textual phrases: either signal alone
// misfires on ordinary interstitials. These selectors track live markup
// and will drift; when 2FA detection stops working, start here.
const twoFactorInputSel = "input[name='verificationCode'], input[name='security_code']"

var twoFactorPhrases = []string{
	"enter the code",
	"we sent a code",
	"we sent you a code",
	"security code",
	"confirm it's you",
	"check your",
}

// Authenticated-home markers. The home icon in the nav bar and the inbox
// link only render for a logged-in session.
var loggedInSelectors = []string{
	"svg[aria-label='Home']",
	"a[href='/direct/inbox/']",
	"nav a[href='/explore/']",
}
