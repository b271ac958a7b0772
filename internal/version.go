package internal

// Version is the cardforge release
const Version = "0.3.0"
