package planner

import "strings"

// QuickStep is one pre-authored, previously-verified build step.
// Quick Build code is trusted by construction: it skips consultation and
// the LLM planner entirely.
type QuickStep struct {
	Name string
	Code string
}

// structure/vegetation keyword triggers for the Quick Build fast path
var quickTriggers = []struct {
	words []string
	step  QuickStep
}{
	{[]string{"house", "cottage", "cabin", "hut"}, QuickStep{Name: "house", Code: snippetHouse}},
	{[]string{"castle", "fortress", "keep", "tower"}, QuickStep{Name: "castle", Code: snippetCastle}},
	{[]string{"forest", "trees", "woods", "grove"}, QuickStep{Name: "vegetation", Code: snippetVegetation}},
}

// QuickBuild returns the fixed step sequence for prompts matching the
// simple keyword heuristics, or ok=false when the full planner should run.
// The sequence is always sky, ground, fog, then any matched structures and
// vegetation in trigger order, then lighting and post-processing.
func QuickBuild(prompt string) (steps []QuickStep, ok bool) {
	lower := strings.ToLower(prompt)

	var matched []QuickStep
	for _, trigger := range quickTriggers {
		for _, w := range trigger.words {
			if strings.Contains(lower, w) {
				matched = append(matched, trigger.step)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, false
	}

	steps = []QuickStep{
		{Name: "sky", Code: snippetSky},
		{Name: "ground", Code: snippetGround},
		{Name: "fog", Code: snippetFog},
	}
	steps = append(steps, matched...)
	steps = append(steps,
		QuickStep{Name: "lighting", Code: snippetLighting},
		QuickStep{Name: "post-process", Code: snippetPostProcess},
	)
	return steps, true
}

const snippetSky = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
actors.spawn_actor_from_class(unreal.SkyAtmosphere, unreal.Vector(0, 0, 0))
sun = actors.spawn_actor_from_class(unreal.DirectionalLight, unreal.Vector(0, 0, 500))
sun.set_actor_rotation(unreal.Rotator(0, -35, 30), False)
sun.get_light_component().set_intensity(8.0)
actors.spawn_actor_from_class(unreal.SkyLight, unreal.Vector(0, 0, 400))`

const snippetGround = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
ground = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(0, 0, 0))
mesh = unreal.load_asset('/Engine/BasicShapes/Plane')
ground.static_mesh_component.set_static_mesh(mesh)
ground.set_actor_scale3d(unreal.Vector(400, 400, 1))
grass = unreal.load_asset('/Game/StarterContent/Materials/M_Ground_Grass')
if grass:
    ground.static_mesh_component.set_material(0, grass)`

const snippetFog = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
fog = actors.spawn_actor_from_class(unreal.ExponentialHeightFog, unreal.Vector(0, 0, 100))
fog.get_component_by_class(unreal.ExponentialHeightFogComponent).set_editor_property('fog_density', 0.015)`

const snippetHouse = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
cube = unreal.load_asset('/Engine/BasicShapes/Cube')
stone = unreal.load_asset('/Game/StarterContent/Materials/M_Brick_Clay_Old')
body = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(0, 0, 150))
body.static_mesh_component.set_static_mesh(cube)
body.set_actor_scale3d(unreal.Vector(6, 5, 3))
if stone:
    body.static_mesh_component.set_material(0, stone)
roof = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(0, 0, 360))
roof.static_mesh_component.set_static_mesh(unreal.load_asset('/Engine/BasicShapes/Cone'))
roof.set_actor_scale3d(unreal.Vector(5, 4.5, 2))`

const snippetCastle = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
cube = unreal.load_asset('/Engine/BasicShapes/Cube')
cyl = unreal.load_asset('/Engine/BasicShapes/Cylinder')
for x, y in [(-900, -900), (900, -900), (-900, 900), (900, 900)]:
    tower = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(x, y, 400))
    tower.static_mesh_component.set_static_mesh(cyl)
    tower.set_actor_scale3d(unreal.Vector(3, 3, 8))
for x, y, sx, sy in [(0, -900, 16, 1), (0, 900, 16, 1), (-900, 0, 1, 16), (900, 0, 1, 16)]:
    wall = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(x, y, 250))
    wall.static_mesh_component.set_static_mesh(cube)
    wall.set_actor_scale3d(unreal.Vector(sx, sy, 5))`

const snippetVegetation = `import unreal
import random
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
cone = unreal.load_asset('/Engine/BasicShapes/Cone')
cyl = unreal.load_asset('/Engine/BasicShapes/Cylinder')
random.seed(7)
for i in range(60):
    x, y = random.uniform(-8000, 8000), random.uniform(-8000, 8000)
    if abs(x) < 1500 and abs(y) < 1500:
        continue
    trunk = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(x, y, 100))
    trunk.static_mesh_component.set_static_mesh(cyl)
    trunk.set_actor_scale3d(unreal.Vector(0.4, 0.4, 2))
    crown = actors.spawn_actor_from_class(unreal.StaticMeshActor, unreal.Vector(x, y, 350))
    crown.static_mesh_component.set_static_mesh(cone)
    s = random.uniform(2.0, 3.5)
    crown.set_actor_scale3d(unreal.Vector(s, s, s))`

const snippetLighting = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
fill = actors.spawn_actor_from_class(unreal.PointLight, unreal.Vector(0, 0, 600))
fill.get_light_component().set_intensity(3000.0)
fill.get_light_component().set_light_color(unreal.LinearColor(1.0, 0.9, 0.8, 1.0))`

const snippetPostProcess = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
pp = actors.spawn_actor_from_class(unreal.PostProcessVolume, unreal.Vector(0, 0, 0))
pp.set_editor_property('unbound', True)
settings = pp.settings
settings.set_editor_property('override_bloom_intensity', True)
settings.set_editor_property('bloom_intensity', 0.4)`

// snippetCinematicCamera is the optional final post-processing step of a
// full run: a flythrough camera placed above the scene. Allowed to fail
// without affecting the run's classification.
const snippetCinematicCamera = `import unreal
actors = unreal.get_editor_subsystem(unreal.EditorActorSubsystem)
cam = actors.spawn_actor_from_class(unreal.CineCameraActor, unreal.Vector(-2500, -2500, 900))
cam.set_actor_rotation(unreal.Rotator(0, -15, 45), False)`

// CinematicCameraCode exposes the final-step snippet to the orchestrator.
func CinematicCameraCode() string { return snippetCinematicCamera }
