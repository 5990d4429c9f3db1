package conda

const (
	// RootPrefixEnv overrides the directory that holds the conda
	// installation and all named environments.
	RootPrefixEnv = "CONDAKIT_HOME"

	// VersionEnv overrides the installer release that is downloaded when the
	// installation has to be bootstrapped, e.g. "py312_24.11.1-0".
	VersionEnv = "CONDAKIT_VERSION"

	// MiniforgeEnv selects the miniforge installer flavor when set to "true"
	// and the miniconda flavor when set to "false".
	MiniforgeEnv = "CONDAKIT_MINIFORGE"

	// CondaExeEnv points at an existing conda executable to use instead of a
	// bootstrapped one. The executable must live under the root prefix.
	CondaExeEnv = "CONDAKIT_CONDA_EXE"

	// CIEnv is the conventional CI marker. When it is "true" conda is run
	// with -q so that progress bars do not flood build logs.
	CIEnv = "CI"
)

const (
	// BuildConfigName is the name of the generated TOML file that records
	// the resolved root prefix, installer version and executable path at
	// setup time, and is read back on every subsequent use.
	BuildConfigName = "condakit.toml"

	// CondarcName is the per-environment channel configuration file. Channel
	// state is scoped to this file rather than the user's global .condarc so
	// that separate environments do not clobber each other's settings.
	CondarcName = "condarc-condakit.yml"

	// DefaultChannel is registered in the root environment's channel
	// configuration right after a fresh installation.
	DefaultChannel = "defaults"
)

const (
	// FlavorMiniconda downloads Miniconda3 installers from repo.anaconda.com.
	FlavorMiniconda = "miniconda"

	// FlavorMiniforge downloads Miniforge3 installers from the conda-forge
	// GitHub releases. This is the default flavor.
	FlavorMiniforge = "miniforge"

	// DefaultMinicondaVersion is the Miniconda3 installer release used when
	// no version selector is configured.
	DefaultMinicondaVersion = "py312_24.11.1-0"
)
