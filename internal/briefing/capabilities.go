package briefing

// Capability describes one engine subsystem agents may script against.
// This catalog is configuration, not logic; it is appended verbatim to
// every assembled context.
type Capability struct {
	Subsystem string
	Notes     string
}

// Capabilities is the fixed catalog of editor subsystems available to
// generated Python.
var Capabilities = []Capability{
	{"actors", "Spawn and place actors via unreal.get_editor_subsystem(unreal.EditorActorSubsystem). Use spawn_actor_from_class with an unreal.Vector location."},
	{"assets", "Load assets with unreal.load_asset('/Game/...') or unreal.load_class. StarterContent meshes live under /Game/StarterContent/Shapes and /Props."},
	{"landscape", "Create terrain with unreal.LandscapeSubsystem or spawn a large scaled StaticMeshActor plane as ground."},
	{"foliage", "Scatter vegetation by spawning StaticMeshActors in a loop with randomized transforms; keep counts under 200 per script."},
	{"lighting", "DirectionalLight for sun, SkyLight for ambient, ExponentialHeightFog for atmosphere. Set intensity via component properties."},
	{"sky", "Spawn unreal.SkyAtmosphere plus a DirectionalLight tagged as the sun for a physically based sky."},
	{"materials", "Assign materials with static_mesh_component.set_material(0, unreal.load_asset(...))."},
	{"postprocess", "Spawn unreal.PostProcessVolume with unbound=True and adjust settings.bloom_intensity, auto exposure, color grading."},
	{"sequencer", "Cinematics via unreal.LevelSequence assets; place a CineCameraActor and key transforms for flythroughs."},
	{"niagara", "Particle effects by spawning unreal.NiagaraActor with a system asset from /Game/Effects if present."},
}

func capabilityBlock() string {
	out := "## Engine capabilities\n"
	for _, c := range Capabilities {
		out += "- " + c.Subsystem + ": " + c.Notes + "\n"
	}
	return out
}
