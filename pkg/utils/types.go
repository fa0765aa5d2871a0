package utils

// DATE_LAYOUT is used when rendering absolute times for display
const DATE_LAYOUT = "2006-01-02 15:04"
