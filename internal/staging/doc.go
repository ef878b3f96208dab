// Package staging manages the raw directory where session archives are
// expanded. Each session owns <raw>/<session>/ plus a <session>.lock file.
package staging
