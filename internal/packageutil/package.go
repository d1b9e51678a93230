package packageutil

import "strings"

var (
	androidPackagePrefixes = []string{
		"android.",
		"androidx.",
		"com.android.",
		"com.google.android.",
		"com.motorola.",
		"dalvik.",
		"java.",
		"javax.",
		"kotlin.",
		"kotlinx.",
		"libcore.",
		"retrofit2.",
		"sun.",
	}
)

// IsAndroidApplicationPackage returns false when the package belongs to the
// Android platform, the JDK or a well known library.
func IsAndroidApplicationPackage(packageName string) bool {
	for _, p := range androidPackagePrefixes {
		if strings.HasPrefix(packageName, p) {
			return false
		}
	}
	return true
}

// IsAndroidApplicationClass checks the class against the application
// identifier when there is one.
func IsAndroidApplicationClass(className, appIdentifier string) bool {
	if appIdentifier != "" {
		return strings.HasPrefix(className, appIdentifier+".")
	}
	return IsAndroidApplicationPackage(className)
}
