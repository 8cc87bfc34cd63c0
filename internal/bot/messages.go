package bot

// User-facing reply strings. Handlers never surface collaborator errors
// directly; every failure maps to one of these.
const (
	msgWelcome           = "Welcome! Please share your phone number."
	btnShareContact      = "Share Contact"
	msgAlreadyRegistered = "You're already registered!"
	msgPhoneSaved        = "Phone number saved! You can start chatting now."

	msgGenerationFallback = "An error occurred while processing your request."
	msgImageFailed        = "An error occurred while processing the image."

	msgSendPDF          = "Please send a PDF file."
	msgPDFExtractFailed = "Unable to extract text from the PDF."
	msgAnalysisFallback = "Error during analysis."
	pdfReplyPrefix      = "Analyzed content from PDF:\n\n"

	msgSearchUsage    = "Please provide a search query."
	msgSearchDisabled = "Web search is unavailable. API key is missing."
	msgSearchFailed   = "An error occurred while searching the web."
	msgNoResults      = "No relevant search results found."

	msgInternalError = "Something went wrong. Please try again later."

	// imagePrompt is the fixed instruction sent alongside photo bytes.
	imagePrompt = "Analyze this image and describe what you see."
)
